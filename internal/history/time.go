package history

// chromeEpochOffsetMicros is the offset between the Chromium timestamp
// epoch (1601-01-01) and the Unix epoch, in microseconds.
const chromeEpochOffsetMicros int64 = 11_644_473_600_000_000

// ChromeEpochOffsetMillis is the same offset in milliseconds, used to build
// cutoff values in Chromium time.
const ChromeEpochOffsetMillis int64 = 11_644_473_600_000

// ChromeToEpochMillis converts a Chromium timestamp (microseconds since
// 1601-01-01) to Unix epoch milliseconds, floored at zero.
func ChromeToEpochMillis(micros int64) int64 {
	ms := (micros - chromeEpochOffsetMicros) / 1000
	if ms < 0 {
		return 0
	}

	return ms
}

// GeckoToEpochMillis converts a Gecko timestamp (microseconds since
// 1970-01-01) to Unix epoch milliseconds, floored at zero.
func GeckoToEpochMillis(micros int64) int64 {
	ms := micros / 1000
	if ms < 0 {
		return 0
	}

	return ms
}

// EpochMillisToChrome converts Unix epoch milliseconds to a Chromium
// timestamp in microseconds.
func EpochMillisToChrome(millis int64) int64 {
	return (millis + ChromeEpochOffsetMillis) * 1000
}

// EpochMillisToGecko converts Unix epoch milliseconds to a Gecko timestamp
// in microseconds.
func EpochMillisToGecko(millis int64) int64 {
	return millis * 1000
}
