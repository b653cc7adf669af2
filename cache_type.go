package pixcache

// CacheType identifies cache tiers. On query completions it describes
// where the result came from; on store, remove and clear requests it
// selects the target tier(s).
type CacheType int

const (
	// CacheTypeNone means the asset was in neither tier. As an
	// operation target it selects nothing.
	CacheTypeNone CacheType = iota
	// CacheTypeDisk is the persistent tier.
	CacheTypeDisk
	// CacheTypeMemory is the in-process tier.
	CacheTypeMemory
	// CacheTypeBoth covers both tiers. On a query completion it means
	// the asset came from memory and the raw bytes from disk.
	CacheTypeBoth
)

func (t CacheType) String() string {
	switch t {
	case CacheTypeNone:
		return "none"
	case CacheTypeDisk:
		return "disk"
	case CacheTypeMemory:
		return "memory"
	case CacheTypeBoth:
		return "both"
	default:
		return "unknown"
	}
}

func (t CacheType) includesMemory() bool {
	return t == CacheTypeMemory || t == CacheTypeBoth
}

func (t CacheType) includesDisk() bool {
	return t == CacheTypeDisk || t == CacheTypeBoth
}
