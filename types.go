package hsi

// CheckOpt bundles checking options.
type CheckOpt struct {
	// Collect gathers every violation into one Issues error instead of
	// stopping at the first. The default (false) preserves the fail-fast,
	// single-cause-reported contract.
	Collect bool
}

func firstOpt(opt []CheckOpt) CheckOpt {
	if len(opt) > 0 {
		return opt[0]
	}
	return CheckOpt{}
}
