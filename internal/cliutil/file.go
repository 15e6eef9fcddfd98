// Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
package cliutil

import (
	"bufio"
	"os"
	"strings"
)

// ReadLines reads a newline-delimited text file, skipping blank lines
// and "#"-prefixed comments — the shared format backing
// --origin-file/--requires-file/--bootstrap-file (spec.md §6).
func ReadLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out, sc.Err()
}
