// Copyright (c) FlowGraph Authors.
// Licensed under the MIT License.

/*
Package types provides the shared type contracts of the FlowGraph engine.

types is the lowest-level public package. It depends on nothing inside the
module and gives workflow, config, and the stores a single error vocabulary
so that callers can branch on error codes instead of matching strings.

Core types:

  - Error / ErrorCode: structured error taxonomy with cause chaining
  - IsErrorCode / GetErrorCode / IsRetryable: error inspection helpers
*/
package types
