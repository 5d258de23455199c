package audio

// Downmix averages interleaved frames into a single channel.
func Downmix(interleaved []float64, channels int) []float64 {
	if channels <= 1 {
		return interleaved
	}
	frames := len(interleaved) / channels
	mono := make([]float64, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for c := 0; c < channels; c++ {
			sum += interleaved[i*channels+c]
		}
		mono[i] = sum / float64(channels)
	}
	return mono
}

// Resample converts pcm from one rate to another by linear interpolation.
// No anti-alias filter runs before downsampling, so energy above the new
// Nyquist frequency folds back into the band. Clips are expected to arrive
// at or near the target rate; ffmpeg handles the rest with its own filter.
func Resample(pcm []float64, from, to int) []float64 {
	if from == to || from <= 0 || to <= 0 || len(pcm) == 0 {
		return pcm
	}
	ratio := float64(from) / float64(to)
	n := int(int64(len(pcm)) * int64(to) / int64(from))
	out := make([]float64, n)
	last := len(pcm) - 1
	for i := range out {
		pos := float64(i) * ratio
		idx := int(pos)
		if idx >= last {
			out[i] = pcm[last]
			continue
		}
		frac := pos - float64(idx)
		out[i] = pcm[idx]*(1-frac) + pcm[idx+1]*frac
	}
	return out
}
