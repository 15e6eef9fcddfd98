//go:build debug

/*
 * Copyright (c) 2018-2021, NVIDIA CORPORATION. All rights reserved.
 */
package debug

import "fmt"

const on = true

func assertionFailed(args ...any) {
	panic(fmt.Sprintf("assertion failed: %v", args))
}

func assertionFailedf(format string, args ...any) {
	panic(fmt.Sprintf("assertion failed: "+format, args...))
}
