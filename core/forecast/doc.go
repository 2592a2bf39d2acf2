// Package forecast implements the rolling forecast orchestrator.
//
// A run validates the request, consults the forecast cache and, on a miss,
// loads history up to the cutoff, estimates weekday rates, optionally
// applies the holiday adjustment, simulates fill levels over the horizon,
// filters the result and stores it under the request's cache key.
package forecast
