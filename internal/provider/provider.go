// Package provider implements the generation backends the AI reply
// capability delegates to. Each backend satisfies
// domain.GenerationBackend and reports raw failures; translating them
// into capability-level errors is the caller's job.
package provider

import "time"

const defaultHTTPTimeout = 60 * time.Second
