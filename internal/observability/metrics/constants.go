package metrics

// Operation names used as the "operation" label across offload metrics.
const (
	// OpProcessAudio is a spectrum computation.
	OpProcessAudio = "process_audio"
	// OpCalculateRMS is a windowed RMS computation.
	OpCalculateRMS = "calculate_rms"
	// OpApplyFilter is a biquad filter pass.
	OpApplyFilter = "apply_filter"
	// OpProcessBatch is a bulk spectrum computation.
	OpProcessBatch = "process_batch"
)

// Label values.
const (
	// StatusSuccess marks a completed operation.
	StatusSuccess = "success"
	// StatusError marks a failed operation.
	StatusError = "error"
	// LabelCacheHit marks a cache hit.
	LabelCacheHit = "hit"
	// LabelCacheMiss marks a cache miss.
	LabelCacheMiss = "miss"
	// ErrorTypeClient marks a 4xx response.
	ErrorTypeClient = "client"
	// ErrorTypeServer marks a 5xx response.
	ErrorTypeServer = "server"
)

// Histogram bucket configuration constants.
const (
	// BucketStart100us is the starting bucket for 0.1ms histograms (0.1ms to ~400ms range).
	BucketStart100us = 0.0001
	// BucketStart100B is the starting bucket for response size histograms.
	BucketStart100B = 100.0
	// BucketFactor2 is the common exponential growth factor of 2 for histogram buckets.
	BucketFactor2 = 2
	// BucketFactor10 grows buckets by orders of magnitude.
	BucketFactor10 = 10
	// BucketCount6 defines 6 exponential buckets.
	BucketCount6 = 6
	// BucketCount12 defines 12 exponential buckets.
	BucketCount12 = 12
)
