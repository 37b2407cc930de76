package conn

// Desc contains a description of a connection.
type Desc struct {
	Endpoint            Endpoint
	GitVersion          string
	Version             Version
	MaxBSONObjectSize   uint32
	MaxMessageSizeBytes uint32
	MaxWriteBatchSize   uint16
	WireVersion         Range
	ReadOnly            bool
}

// Range is an inclusive range of numbers.
type Range struct {
	Min int32
	Max int32
}

// Includes indicates whether the value is included in the range.
func (r Range) Includes(i int32) bool {
	return i >= r.Min && i <= r.Max
}
