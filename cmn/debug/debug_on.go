//go:build debug

// Package debug provides build-tag gated assertions used across the
// module. Built only with `-tags debug`; see debug_off.go for the
// zero-cost production stand-in.
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package debug

import (
	"fmt"
	"os"
)

// Enabled reports whether the debug build tag is active; callers use this
// to skip constructing expensive assertion arguments in release builds.
const Enabled = true

// Assert panics with msg if cond is false. Reserved for invariants that
// must never be observed to fail (see the quantified invariants in the
// testable-properties section of the design doc) -- not for ordinary
// validation of caller-supplied input, which returns a *cmn.Error instead.
func Assert(cond bool, msg string, args ...interface{}) {
	if !cond {
		fatalMsg(msg, args...)
	}
}

// AssertNoErr panics if err is non-nil.
func AssertNoErr(err error) {
	if err != nil {
		fatalMsg("unexpected error: %v", err)
	}
}

// AssertMsg is Assert without the condition, for call sites that have
// already branched on the failure case.
func AssertMsg(msg string, args ...interface{}) {
	fatalMsg(msg, args...)
}

func fatalMsg(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "assertion failed: "+format+"\n", args...)
	panic(fmt.Sprintf(format, args...))
}
