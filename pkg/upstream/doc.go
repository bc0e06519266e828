// Package upstream executes outbound advertising API calls under quota
// control with bounded retries.
//
// # Call Lifecycle
//
// Each logical call runs an admit/call/classify loop:
//
//	CHECK QUOTA -> denied  -> wait  -> CHECK QUOTA
//	            -> allowed -> charge -> CALL
//	CALL -> success            -> return response
//	     -> throttled          -> backoff -> CHECK QUOTA
//	     -> transport failure  -> backoff -> CHECK QUOTA
//	     -> credential invalid -> return CredentialError
//	     -> business error     -> return response unmodified
//
// Points are charged before the network call completes because the
// quota models attempted call rate, not confirmed success; failures are
// never refunded. Backoff is exponential, capped, and every attempt's
// outcome is reported to the usage recorder so the alert engine sees
// true call volume.
//
// # Classification
//
// Classify isolates all upstream-specific knowledge (error codes 17,
// 613, 80000 for throttles, 190 for invalid tokens, the insights
// throttle header) into one pure function, keeping the retry loop
// generic and the mapping trivially unit-testable.
package upstream
