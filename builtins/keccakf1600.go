package builtins

// keccakF1600 permutes a 25-lane (1600-bit) state in place, implementing
// the standard Keccak-f[1600] permutation (24 rounds of theta, rho, pi,
// chi, iota) used by the Keccak builtin's output deduction (spec §4.6).
func keccakF1600(state *[25]uint64) {
	for round := 0; round < 24; round++ {
		// theta
		var c [5]uint64
		for x := 0; x < 5; x++ {
			c[x] = state[x] ^ state[x+5] ^ state[x+10] ^ state[x+15] ^ state[x+20]
		}
		var d [5]uint64
		for x := 0; x < 5; x++ {
			d[x] = c[(x+4)%5] ^ rotl64(c[(x+1)%5], 1)
		}
		for x := 0; x < 5; x++ {
			for y := 0; y < 5; y++ {
				state[x+5*y] ^= d[x]
			}
		}

		// rho + pi
		var b [25]uint64
		x, y := 1, 0
		current := state[x+5*y]
		for t := 0; t < 24; t++ {
			nx, ny := y, (2*x+3*y)%5
			nextVal := state[nx+5*ny]
			b[nx+5*ny] = rotl64(current, uint(rhoOffsets[t]))
			current = nextVal
			x, y = nx, ny
		}
		b[0] = state[0]

		// chi
		for y := 0; y < 5; y++ {
			var row [5]uint64
			for x := 0; x < 5; x++ {
				row[x] = b[x+5*y]
			}
			for x := 0; x < 5; x++ {
				state[x+5*y] = row[x] ^ ((^row[(x+1)%5]) & row[(x+2)%5])
			}
		}

		// iota
		state[0] ^= roundConstants[round]
	}
}

var rhoOffsets = [24]uint8{
	1, 3, 6, 10, 15, 21, 28, 36, 45, 55, 2, 14,
	27, 41, 56, 8, 25, 43, 62, 18, 39, 61, 20, 44,
}

var roundConstants = [24]uint64{
	0x0000000000000001, 0x0000000000008082, 0x800000000000808A, 0x8000000080008000,
	0x000000000000808B, 0x0000000080000001, 0x8000000080008081, 0x8000000000008009,
	0x000000000000008A, 0x0000000000000088, 0x0000000080008009, 0x000000008000000A,
	0x000000008000808B, 0x800000000000008B, 0x8000000000008089, 0x8000000000008003,
	0x8000000000008002, 0x8000000000000080, 0x000000000000800A, 0x800000008000000A,
	0x8000000080008081, 0x8000000000008080, 0x0000000080000001, 0x8000000080008008,
}

func rotl64(x uint64, n uint) uint64 {
	n %= 64
	if n == 0 {
		return x
	}
	return (x << n) | (x >> (64 - n))
}
