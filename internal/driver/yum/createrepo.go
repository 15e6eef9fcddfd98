// Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
package yum

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/packetary-go/pkgmirror/cmn/cos"
)

// createrepoTool is the external createrepo-equivalent binary RPM
// metadata rebuilds delegate to (spec.md §4.4.2: "rebuild delegates to
// an external createrepo-equivalent tool invoked once per mirror
// directory"). Overridable for tests.
var createrepoTool = "createrepo_c"

// runCreaterepo invokes the configured tool against dir, failing with
// ErrToolMissing naming the tool if it cannot be found on PATH.
func runCreaterepo(ctx context.Context, dir string) error {
	path, err := exec.LookPath(createrepoTool)
	if err != nil {
		return &cos.ErrToolMissing{Tool: createrepoTool}
	}
	cmd := exec.CommandContext(ctx, path, "--update", dir)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s %s: %w (output: %s)", createrepoTool, dir, err, out)
	}
	return nil
}
