package sandbox

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/NASA-AMMOS/aerie-sub008/internal/engine/diagnostic"
)

// stackLimit caps the number of frames kept from a runtime stack.
const stackLimit = 10

// frameLine matches one rendered runtime frame:
//
//	at goal (goal.ts:3:9(12))
//	at goal.ts:7:1(40)
var frameLine = regexp.MustCompile(`^\s*at (?:(.*?) \()?(.+):(\d+):(\d+)\(\d+\)\)?$`)

// parseStack extracts frames from runtime stack text, innermost first. Native
// frames and any non-frame lines are skipped.
func parseStack(text string) []diagnostic.RawFrame {
	var frames []diagnostic.RawFrame
	for _, line := range strings.Split(text, "\n") {
		m := frameLine.FindStringSubmatch(strings.TrimRight(line, "\r"))
		if m == nil {
			continue
		}
		ln, err := strconv.Atoi(m[3])
		if err != nil {
			continue
		}
		col, err := strconv.Atoi(m[4])
		if err != nil {
			continue
		}
		frames = append(frames, diagnostic.RawFrame{
			Function: m[1],
			File:     m[2],
			Line:     ln,
			Column:   col,
		})
	}
	return frames
}

func limitFrames(frames []diagnostic.RawFrame) []diagnostic.RawFrame {
	if len(frames) > stackLimit {
		return frames[:stackLimit]
	}
	return frames
}
