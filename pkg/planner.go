package sparsefp

import "strconv"

// OffsetPlan is the ascending list of byte offsets sampled in one file
type OffsetPlan []int64

// Strings renders the plan as decimal tokens (positions mode output)
func (p OffsetPlan) Strings() []string {
	tokens := make([]string, len(p))
	for i, off := range p {
		tokens[i] = strconv.FormatInt(off, 10)
	}
	return tokens
}

// IsTooSmall reports whether a file of fileSize bytes gets the sentinel fingerprint
func IsTooSmall(fileSize, sampleCount, sampleSize int64) bool {
	return fileSize < sampleCount*sampleSize
}

// PlanOffsets computes the sample offsets for a file. It returns false when the
// file is smaller than sampleCount*sampleSize and must be fingerprinted as the
// sentinel.
//
// Offset k (1-based) is k*floor(fileSize/(sampleCount+1)). If that window would
// run past end of file, which can only happen to the last sample when the skip
// is smaller than sampleSize, it is pulled back to fileSize-sampleSize. A zero
// skip only happens when fileSize == sampleCount with one-byte samples, and then
// every byte is sampled.
func PlanOffsets(fileSize, sampleCount, sampleSize int64) (OffsetPlan, bool) {
	if sampleCount < 1 || sampleSize < 1 || IsTooSmall(fileSize, sampleCount, sampleSize) {
		return nil, false
	}

	skip := fileSize / (sampleCount + 1)
	plan := make(OffsetPlan, 0, sampleCount)

	if skip == 0 {
		for k := int64(0); k < sampleCount; k++ {
			plan = append(plan, k)
		}
		DebugLog(DebugPlan, "size=%d count=%d: zero skip, sampling every byte", fileSize, sampleCount)
		return plan, true
	}

	last := fileSize - sampleSize
	for k := int64(1); k <= sampleCount; k++ {
		off := k * skip
		if off > last {
			DebugLog(DebugPlan, "size=%d count=%d: clamping offset %d to %d", fileSize, sampleCount, off, last)
			off = last
		}
		plan = append(plan, off)
	}
	return plan, true
}
