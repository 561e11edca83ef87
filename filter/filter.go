package filter

import "fmt"

// Kind selects which streams a plan touches.
type Kind string

const (
	// KindWithAudio re-times both the video and audio streams.
	KindWithAudio Kind = "with_audio"
	// KindVideoOnly re-times the video stream and drops audio entirely.
	KindVideoOnly Kind = "video_only"
)

// A single atempo stage only accepts factors in [0.5, 2.0]. A speed factor
// of 2.0 sits exactly on the upper edge; anything beyond it would need
// chained atempo stages, which this builder does not produce.
const (
	MinTempo = 0.5
	MaxTempo = 2.0
)

// Plan describes one transcode attempt: which streams to re-time and by how much.
type Plan struct {
	Kind        Kind
	SpeedFactor float64
}

// WithAudio returns the plan that speeds up both video and audio.
func WithAudio(speedFactor float64) Plan {
	return Plan{Kind: KindWithAudio, SpeedFactor: speedFactor}
}

// VideoOnly returns the plan that speeds up video and discards audio.
func VideoOnly(speedFactor float64) Plan {
	return Plan{Kind: KindVideoOnly, SpeedFactor: speedFactor}
}

// Build produces the ffmpeg argument list for a plan. It is deterministic and
// has no side effects; the last argument is always outputName.
func Build(p Plan, inputName, outputName string) []string {
	switch p.Kind {
	case KindWithAudio:
		graph := fmt.Sprintf("[0:v]setpts=%.2f*PTS[v];[0:a]atempo=%.2f[a]",
			1/p.SpeedFactor, p.SpeedFactor)
		return []string{
			"-i", inputName,
			"-filter_complex", graph,
			"-map", "[v]",
			"-map", "[a]",
			outputName,
		}
	default:
		return []string{
			"-i", inputName,
			"-filter:v", fmt.Sprintf("setpts=%.2f*PTS", 1/p.SpeedFactor),
			"-an",
			outputName,
		}
	}
}

// Splice inserts extra arguments before the trailing output name of a built
// argument list. Used for configured encoder overrides.
func Splice(argv, extra []string) []string {
	if len(extra) == 0 || len(argv) == 0 {
		return argv
	}
	out := make([]string, 0, len(argv)+len(extra))
	out = append(out, argv[:len(argv)-1]...)
	out = append(out, extra...)
	out = append(out, argv[len(argv)-1])
	return out
}
