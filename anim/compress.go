package anim

import (
	"math"

	"github.com/pkg/errors"

	"github.com/mogaika/studiomdl/config"
	"github.com/mogaika/studiomdl/studio"
	"github.com/mogaika/studiomdl/utils"
)

func runHeader(valid, total int) uint16 {
	return uint16(valid) | uint16(total)<<8
}

func runValid(h uint16) int { return int(h & 0xff) }
func runTotal(h uint16) int { return int(h >> 8) }

// EncodeRLE packs values into runs. A run stores its distinct values and how many
// frames it covers, frames past the stored values repeat the last one.
// A value equal to its predecessor is stored inline while the run has no
// repeats yet and the next value differs.
func EncodeRLE(values []int16) studio.AnimChannel {
	if len(values) == 0 {
		return nil
	}
	ch := studio.AnimChannel{runHeader(1, 1), uint16(values[0])}
	hdr := 0
	valid, total := 1, 1

	n := len(values)
	for m := 1; m < n; m++ {
		if total == config.MAX_ANIMVALUE_RUN {
			ch[hdr] = runHeader(valid, total)
			hdr = len(ch)
			valid, total = 1, 0
			ch = append(ch, 0, uint16(values[m]))
		} else if values[m] != values[m-1] || (total == valid && m < n-1 && values[m] != values[m+1]) {
			if total != valid {
				ch[hdr] = runHeader(valid, total)
				hdr = len(ch)
				valid, total = 0, 0
				ch = append(ch, 0)
			}
			valid++
			ch = append(ch, uint16(values[m]))
		}
		total++
	}
	ch[hdr] = runHeader(valid, total)
	return ch
}

// DecodeValue returns the value of frame from an encoded channel, a nil channel is all zero
func DecodeValue(ch studio.AnimChannel, frame int) int16 {
	if ch == nil {
		return 0
	}
	i := 0
	for frame >= runTotal(ch[i]) {
		frame -= runTotal(ch[i])
		i += runValid(ch[i]) + 1
		if i >= len(ch) {
			return int16(ch[len(ch)-1])
		}
	}
	if v := runValid(ch[i]); frame >= v {
		return int16(ch[i+v])
	}
	return int16(ch[i+1+frame])
}

func clipRotation(v float32) float32 {
	return utils.AngleNormalize(v)
}

// rawValue is channel ch of bone k on frame j relative to the reference pose,
// deltas are stored as they are
func rawValue(s *studio.Session, a *studio.Animation, j, k, ch int) float32 {
	p := a.Sample[j][k]
	b := s.Bones[k]
	if ch < 3 {
		if a.IsDelta() {
			return p.Pos[ch]
		}
		return p.Pos[ch] - b.Pos[ch]
	}
	if a.IsDelta() {
		return clipRotation(p.Rot[ch-3])
	}
	return clipRotation(p.Rot[ch-3] - b.Rot[ch-3])
}

// channelScale maps the larger extreme of [minv, maxv] onto the int16 range
func channelScale(minv, maxv float32) float32 {
	if minv < maxv {
		if -minv > maxv {
			return minv / -32768
		}
		return maxv / 32767
	}
	return config.CONSTANT_CHANNEL_SCALE
}

// initialRange is what the scale covers even when every frame stays inside it
func initialRange(ch int) (float32, float32) {
	if ch < 3 {
		return -config.POS_RANGE, config.POS_RANGE
	}
	return -math.Pi / 8, math.Pi / 8
}

func quantize(v float32) int16 {
	q := float64(v)
	if q > math.MaxInt16 {
		return math.MaxInt16
	}
	if q < math.MinInt16 {
		return math.MinInt16
	}
	return int16(q)
}

// CompressChannel picks the scale of a standalone channel ch and encodes values with it.
// Rotation values are expected already clipped.
func CompressChannel(ch int, values []float32) (float32, studio.AnimChannel) {
	minv, maxv := initialRange(ch)
	for _, v := range values {
		if v < minv {
			minv = v
		}
		if v > maxv {
			maxv = v
		}
	}
	scale := channelScale(minv, maxv)

	q := make([]int16, len(values))
	for i, v := range values {
		q[i] = quantize(v / scale)
	}
	return scale, EncodeRLE(q)
}

// ComputeScales sets the per channel quantization scale of every bone from
// the range its channel takes over all animations
func ComputeScales(s *studio.Session) {
	for k, b := range s.Bones {
		for ch := 0; ch < 6; ch++ {
			minv, maxv := initialRange(ch)
			for _, a := range s.Animations {
				for j := range a.Sample {
					v := rawValue(s, a, j, k, ch)
					if v < minv {
						minv = v
					}
					if v > maxv {
						maxv = v
					}
				}
			}
			if ch < 3 {
				b.PosScale[ch] = channelScale(minv, maxv)
			} else {
				b.RotScale[ch-3] = channelScale(minv, maxv)
			}
		}
	}
}

// CompressAnimations quantizes and run length encodes every animation channel.
// Procedural bones and bones the animation does not weigh are left empty,
// so are channels that stay at zero.
func CompressAnimations(s *studio.Session) error {
	ComputeScales(s)

	changes, total := 0, 0
	for _, a := range s.Animations {
		if len(a.Sample) == 0 {
			return errors.Errorf("No animation frames in %q", a.Name)
		}
		a.Channels = make([][6]studio.AnimChannel, len(s.Bones))
		values := make([]int16, len(a.Sample))

		for k, b := range s.Bones {
			if b.Flags&studio.BONE_ALWAYS_PROCEDURAL != 0 {
				continue
			}
			if weight(a, k) < config.ANIM_WEIGHT_EPSILON {
				continue
			}

			for ch := 0; ch < 6; ch++ {
				for j := range a.Sample {
					v := rawValue(s, a, j, k, ch)
					if ch < 3 {
						v /= b.PosScale[ch]
						if a.IsDelta() && a.PosWeight != nil {
							// the format has a single weight per bone
							v *= a.PosWeight[k] / a.Weight[k]
						}
					} else {
						v /= b.RotScale[ch-3]
					}
					values[j] = quantize(v)
				}

				enc := EncodeRLE(values)
				changes += len(enc)
				total += len(values)
				if len(enc) == 2 && values[0] == 0 {
					continue
				}
				a.Channels[k][ch] = enc
			}
		}
	}

	if total != 0 {
		s.Log.Printf("animation compressed to %.1f%% of original size", float32(changes)/float32(total)*100)
	}
	return nil
}

// ChannelsSize is the number of bytes the encoded channels of a take in the output
func ChannelsSize(a *studio.Animation) int {
	size := 0
	for _, bone := range a.Channels {
		for _, ch := range bone {
			size += len(ch) * 2
		}
	}
	return size
}
