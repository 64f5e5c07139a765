package indexer

import "phonolite/internal/library/model"

// buildSeekIndex implements spec.md §4.C step 9: linear interpolation
// every 5000ms, with the first point fixed at (0,0) and the final
// point fixed at (duration_ms, file_size-1). Interpolation is skipped
// entirely when either duration or size is zero.
func buildSeekIndex(durationMs uint32, fileSize uint64) model.SeekIndex {
	idx := model.SeekIndex{DurationMs: durationMs}
	if durationMs == 0 || fileSize == 0 {
		return idx
	}

	idx.Points = append(idx.Points, model.SeekPoint{TMs: 0, Byte: 0})
	for t := uint32(5000); t < durationMs; t += 5000 {
		b := uint64(t) * fileSize / uint64(durationMs)
		idx.Points = append(idx.Points, model.SeekPoint{TMs: t, Byte: b})
	}
	idx.Points = append(idx.Points, model.SeekPoint{TMs: durationMs, Byte: fileSize - 1})
	return idx
}
