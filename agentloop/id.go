// Copyright (c) Microsoft. All rights reserved.

package agentloop

import "github.com/google/uuid"

func newID() string { return uuid.NewString() }
