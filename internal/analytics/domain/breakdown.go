package domain

// Dimension is a click attribute clicks can be grouped by.
type Dimension string

const (
	DimensionCountry Dimension = "country_code"
	DimensionDevice  Dimension = "device"
	DimensionSource  Dimension = "source"
)

// UnknownValue stands in for clicks where the attribute was not resolved.
const UnknownValue = "unknown"

// GroupCount is the number of clicks sharing one dimension value.
type GroupCount struct {
	Value string
	Count int64
}
