// Package cloud provides a prediction backend that invokes remote model
// endpoints through a Runtime.
//
// # Runtime protocol
//
// HTTPRuntime speaks JSON over HTTP:
//
//	POST /endpoints/{name}/invocations   invoke a model ({"action": "predict"|"explain", ...})
//	GET  /endpoints/{name}               describe the deployed model
//	POST /functions/{name}/invocations   invoke a function (X-Invocation-Type: Event for async)
//
// Every request carries the bearer API key and the X-Region header. Error
// responses use the body {"code": "...", "message": "..."}; Translate maps
// them, and Azure SDK response errors, onto the prediction fault taxonomy.
//
// # Model outputs
//
// Outputs are rejected with PredictionError when a score, confidence or
// importance weight falls outside [0,1] or a required field is missing.
package cloud
