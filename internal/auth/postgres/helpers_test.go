// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HPMS Contributors

package postgres

import "time"

var testNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
