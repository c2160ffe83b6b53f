// Package logging provides a chainable structured-field builder on top of
// logrus, plus convenience constructors for the field sets used repeatedly
// across the pipeline (queue, OCR, sync, database, HTTP, security,
// performance).
package logging

import (
	"time"

	"github.com/sirupsen/logrus"
)

// StandardFields is a chainable builder for structured log fields.
type StandardFields map[string]interface{}

func NewFields() StandardFields {
	return StandardFields{}
}

func (f StandardFields) Component(name string) StandardFields {
	f["component"] = name
	return f
}

func (f StandardFields) Operation(name string) StandardFields {
	f["operation"] = name
	return f
}

func (f StandardFields) Resource(resourceType, name string) StandardFields {
	f["resource_type"] = resourceType
	if name != "" {
		f["resource_name"] = name
	}
	return f
}

func (f StandardFields) Duration(d time.Duration) StandardFields {
	f["duration_ms"] = d.Milliseconds()
	return f
}

func (f StandardFields) Error(err error) StandardFields {
	if err != nil {
		f["error"] = err.Error()
	}
	return f
}

func (f StandardFields) UserID(id string) StandardFields {
	if id != "" {
		f["user_id"] = id
	}
	return f
}

func (f StandardFields) RequestID(id string) StandardFields {
	f["request_id"] = id
	return f
}

func (f StandardFields) TraceID(id string) StandardFields {
	f["trace_id"] = id
	return f
}

func (f StandardFields) StatusCode(code int) StandardFields {
	f["status_code"] = code
	return f
}

func (f StandardFields) Method(method string) StandardFields {
	f["method"] = method
	return f
}

func (f StandardFields) URL(url string) StandardFields {
	f["url"] = url
	return f
}

func (f StandardFields) Count(n int) StandardFields {
	f["count"] = n
	return f
}

func (f StandardFields) Size(bytes int64) StandardFields {
	f["size_bytes"] = bytes
	return f
}

func (f StandardFields) Version(v string) StandardFields {
	f["version"] = v
	return f
}

func (f StandardFields) Custom(key string, value interface{}) StandardFields {
	f[key] = value
	return f
}

// ToLogrus converts the field set into a logrus.Fields value.
func (f StandardFields) ToLogrus() logrus.Fields {
	out := make(logrus.Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// DatabaseFields builds the field set for a store operation.
func DatabaseFields(operation, table string) StandardFields {
	return NewFields().Component("database").Operation(operation).Resource("table", table)
}

// HTTPFields builds the field set for an admin-surface HTTP request.
func HTTPFields(method, url string, statusCode int) StandardFields {
	return NewFields().Component("http").Method(method).URL(url).StatusCode(statusCode)
}

// QueueFields builds the field set for a queue operation against one item.
func QueueFields(operation string, itemID string) StandardFields {
	return NewFields().Component("queue").Operation(operation).Resource("queue_item", itemID)
}

// OCRFields builds the field set for an OCR extraction against one document.
func OCRFields(operation, documentID string) StandardFields {
	return NewFields().Component("ocr").Operation(operation).Resource("document", documentID)
}

// SyncFields builds the field set for a scheduler/sync operation on a source.
func SyncFields(operation, sourceID string) StandardFields {
	return NewFields().Component("sync").Operation(operation).Resource("source", sourceID)
}

// SecurityFields builds the field set for an access-control related event.
func SecurityFields(operation, subject string) StandardFields {
	return NewFields().Component("security").Operation(operation).Custom("subject", subject)
}

// PerformanceFields builds the field set for a timed operation outcome.
func PerformanceFields(operation string, duration time.Duration, success bool) StandardFields {
	return NewFields().Component("performance").Operation(operation).Duration(duration).Custom("success", success)
}

// MetricsFields builds the field set logged alongside a metric emission.
func MetricsFields(operation, metricName string, value float64) StandardFields {
	return NewFields().Component("metrics").Operation(operation).Custom("metric_name", metricName).Custom("value", value)
}
