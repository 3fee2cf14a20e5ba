package pow

import "math/big"

// rhoReps gives a false positive rate of at most one in 2^50, good enough for a
// mining aid.
const rhoReps = 25

// Rho runs the Pollard rho cycle on n. It returns a prime factor g with
// prime cofactor n/g and true when n is a semiprime it could split, and
// false when n is prime or the factorization did not terminate in two
// primes.
func Rho(n *big.Int) (*big.Int, bool) {
	if n.ProbablyPrime(rhoReps) {
		return nil, false
	}

	one := big.NewInt(1)
	x := big.NewInt(2)
	y := big.NewInt(2)
	g := big.NewInt(1)
	tmp := new(big.Int)

	// f(z) = z^2 + 1 mod n, y advances twice as fast
	f := func(z *big.Int) {
		z.Mul(z, z)
		z.Add(z, one)
		z.Mod(z, n)
	}

	for g.Cmp(one) == 0 {
		f(x)
		f(y)
		f(y)

		tmp.Sub(x, y)
		g.GCD(nil, nil, tmp.Abs(tmp), n)
	}

	cofactor := new(big.Int).Div(n, g)

	// rho may return a composite split or n itself
	if g.Cmp(n) == 0 {
		return nil, false
	}
	if !g.ProbablyPrime(30) || !cofactor.ProbablyPrime(30) {
		return nil, false
	}

	return g, true
}
