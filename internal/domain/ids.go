package domain

// Prefixes of the sequential identifiers issued per entity kind.
const (
	PrefixCart        = "PAN"
	PrefixTransaction = "TRX"
	PrefixMovement    = "MVT"
	PrefixOrder       = "CMD"
)
