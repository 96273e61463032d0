package vm

import "errors"

// ErrInvalidInstruction is wrapped by every decoder failure (spec §4.3).
var ErrInvalidInstruction = errors.New("invalid instruction")

// ErrUnknownOperand reports that operand deduction's fixed point did not
// fully determine dst, op0, op1 and res (spec §4.4 step 3).
var ErrUnknownOperand = errors.New("unknown operand")

// ErrDiffAssertValues reports an assert_eq whose dst and res disagree.
var ErrDiffAssertValues = errors.New("assert_eq: dst != res")

// ErrCantWriteReturnPc reports a call whose op0 cell already held a value
// other than the expected return pc.
var ErrCantWriteReturnPc = errors.New("call: cannot write return pc")

// ErrCantWriteReturnFp reports a call whose dst cell already held a value
// other than the expected saved fp.
var ErrCantWriteReturnFp = errors.New("call: cannot write return fp")

// ErrEndOfProgramUnreachable reports that RunUntilPC exceeded its step
// bound without reaching the target pc.
var ErrEndOfProgramUnreachable = errors.New("end of program unreachable")
