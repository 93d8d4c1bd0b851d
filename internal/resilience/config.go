package resilience

import "time"

// FromCircuitConfig maps flat config integers onto a CircuitBreakerConfig.
// Zero or negative values are left unset so NewCircuitBreaker applies its
// own defaults.
func FromCircuitConfig(failureThreshold, resetTimeoutSecs int) CircuitBreakerConfig {
	var cfg CircuitBreakerConfig
	if failureThreshold > 0 {
		cfg.FailureThreshold = failureThreshold
	}
	if resetTimeoutSecs > 0 {
		cfg.ResetTimeout = time.Duration(resetTimeoutSecs) * time.Second
	}
	return cfg
}
