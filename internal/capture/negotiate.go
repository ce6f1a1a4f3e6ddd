package capture

// Config holds the negotiated capture parameters
type Config struct {
	CaptureSize int
	CaptureRate int
}

// Negotiate picks the largest supported capture size and the maximum capture rate
func Negotiate(sub Subsystem) Config {
	caps := sub.Capabilities()
	return Config{
		CaptureSize: caps.MaxCaptureSize,
		CaptureRate: caps.MaxCaptureRate,
	}
}
