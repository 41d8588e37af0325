package otelhelper

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/flowmesh/flowmesh/pkg/workflow"
)

// SetError marks the span failed and records the rejection's domain class,
// so traces can be filtered by how a command was refused rather than by
// error string.
func SetError(span trace.Span, err error, attrs ...attribute.KeyValue) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.AddEvent("error_occurred", trace.WithAttributes(
		append(attrs, attribute.String(ErrorClassKey, errorClass(err)))...,
	))
}

func errorClass(err error) string {
	switch {
	case workflow.IsValidationError(err):
		return "validation"
	case workflow.IsInvalidState(err):
		return "invalid_state"
	case workflow.IsDuplicateEntity(err):
		return "duplicate_entity"
	case workflow.IsNotFound(err):
		return "not_found"
	default:
		return "internal"
	}
}
