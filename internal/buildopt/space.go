package buildopt

// Features tells which dimensions of the matrix a benchmark exercises.
// A disabled dimension is pinned to a single value instead of varying.
type Features struct {
	ShadowExceptionStacks bool // when false, ses is always on (without unnest)
	ShadowStacks          bool
	ContextManagement     bool // when false, ctx is always on
	AccelRaisePri         bool
	ICallSanitizer        bool
}

// AllFeatures varies every dimension.
var AllFeatures = Features{
	ShadowExceptionStacks: true,
	ShadowStacks:          true,
	ContextManagement:     true,
	AccelRaisePri:         true,
	ICallSanitizer:        true,
}

// Allows reports whether o lies on the pinned value of every disabled dimension.
func (f Features) Allows(o Option) bool {
	if !f.ShadowExceptionStacks && (!o.SES || o.Unnest) {
		return false
	}
	if !f.ShadowStacks && o.SS {
		return false
	}
	if !f.ContextManagement && !o.Ctx {
		return false
	}
	if !f.AccelRaisePri && o.AccelRaisePri {
		return false
	}
	if !f.ICallSanitizer && o.ICall {
		return false
	}
	return true
}

// Space describes the domains of the build configuration matrix.
type Space struct {
	// VaryROMOffset includes rom-offset values 4, 8 and 12 besides 0.
	VaryROMOffset bool
}

var (
	modes  = []Mode{ReleaseFast, ReleaseSmall}
	bools  = []bool{false, true}
	offset = []uint8{0, 4, 8, 12}
)

func (s Space) romOffsets() []uint8 {
	if s.VaryROMOffset {
		return offset
	}
	return offset[:1]
}

// All returns every valid configuration in a fixed order.
// Each call returns a new slice.
func (s Space) All() []Option {
	var out []Option
	for _, mode := range modes {
		for _, ctx := range bools {
			for _, ses := range bools {
				for _, unnest := range bools {
					for _, ss := range bools {
						for _, abortingSS := range bools {
							for _, icall := range bools {
								for _, ape := range bools {
									for _, off := range s.romOffsets() {
										o := Option{
											Mode:          mode,
											Ctx:           ctx,
											SES:           ses,
											Unnest:        unnest,
											SS:            ss,
											AbortingSS:    abortingSS,
											ICall:         icall,
											AccelRaisePri: ape,
											ROMOffset:     off,
										}
										if o.Validate() == nil {
											out = append(out, o)
										}
									}
								}
							}
						}
					}
				}
			}
		}
	}
	return out
}

// Enumerate returns the valid configurations that f allows, in the order of All.
func (s Space) Enumerate(f Features) []Option {
	all := s.All()
	out := all[:0]
	for _, o := range all {
		if f.Allows(o) {
			out = append(out, o)
		}
	}
	return out
}
