// Copyright (c) FlowGraph Authors.
// Licensed under the MIT License.

// Package testutil provides shared helpers for FlowGraph tests.
//
// Usage:
//
//	ctx := testutil.TestContext(t)
//	testutil.AssertEventuallyTrue(t, func() bool { return done }, 5*time.Second)
package testutil
