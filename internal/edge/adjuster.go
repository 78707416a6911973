package edge

import "math"

// logitEps keeps boundary probabilities finite in log-odds space
const logitEps = 1e-6

// Logit maps a probability to log-odds, clamping boundary inputs so the
// result stays finite.
func Logit(p float64) float64 {
	if p < logitEps {
		p = logitEps
	}
	if p > 1-logitEps {
		p = 1 - logitEps
	}
	return math.Log(p / (1 - p))
}

// Sigmoid maps log-odds back to a probability strictly inside (0,1)
func Sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

// AdjustProbability nudges the baseline probability by the astrological
// score in log-odds space:
//
//	p_astro = sigmoid(logit(p0) + lambda_gain * s_astro)
//
// The log-odds form keeps the output strictly inside (0,1) for any score
// magnitude, and is monotone increasing in sAstro for fixed p0. The
// identity sAstro == 0 => p_astro == p0 holds exactly.
func AdjustProbability(p0, sAstro, lambdaGain float64) float64 {
	if sAstro == 0 {
		return p0
	}
	return Sigmoid(Logit(p0) + lambdaGain*sAstro)
}
