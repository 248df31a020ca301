// Package attack provides analytical estimators for the impact of Grover's
// and Shor's algorithms on deployed key sizes.
//
// No quantum circuits are simulated; these are complexity-based heuristics
// for sizing decisions: how much symmetric security survives Grover, and how
// far fault-tolerant hardware remains from breaking RSA. The numbers are
// illustrative, not predictions.
package attack

import "math"

// EffectiveSymmetricSecurityBits returns the approximate security of a
// symmetric key under Grover's algorithm. Grover's quadratic speedup halves
// the brute-force exponent, so a k-bit key offers roughly k/2 bits.
func EffectiveSymmetricSecurityBits(classicalBits int) int {
	return classicalBits / 2
}

// RequiredSymmetricBits returns the symmetric key size needed so that
// Grover-reduced security still meets the target: twice the target bits.
func RequiredSymmetricBits(targetSecurityBits int) int {
	return 2 * targetSecurityBits
}

// RSAClassicalSecurityBits approximates the classical security of an RSA
// modulus using the Lenstra-Verheul heuristic mapping for common sizes and a
// sub-exponential formula elsewhere. Rough, for comparison only.
func RSAClassicalSecurityBits(modulusBits int) int {
	switch modulusBits {
	case 1024:
		return 80
	case 2048:
		return 112
	case 3072:
		return 128
	case 4096:
		return 152
	}
	n := float64(modulusBits)
	return int(0.3 * math.Cbrt(n) * math.Pow(math.Log(n), 2.0/3.0))
}

// ShorBreakFeasibilityYears is a toy estimator of the years required to
// break an RSA modulus with a fault-tolerant quantum computer of the given
// logical qubit count, using rough scaling from the literature (20k logical
// qubits and ~10^12 surface-code cycles for RSA-2048). Returns +Inf when no
// qubits are available.
func ShorBreakFeasibilityYears(rsaBits, logicalQubits int, surfaceCodeCycleNS float64) float64 {
	const (
		baseQubitsFor2048  = 20_000
		depthCyclesFor2048 = 1e12
	)

	scale := float64(rsaBits) / 2048
	requiredQubits := baseQubitsFor2048 * scale
	requiredCycles := depthCyclesFor2048 * math.Pow(scale, 3)

	speedFactor := float64(logicalQubits) / requiredQubits
	if speedFactor <= 0 {
		return math.Inf(1)
	}

	effectiveCycles := requiredCycles / speedFactor
	seconds := effectiveCycles * surfaceCodeCycleNS * 1e-9
	return seconds / (60 * 60 * 24 * 365)
}
