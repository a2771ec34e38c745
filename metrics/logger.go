/* Copyright (c) 2019 Gregor Riepl
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 */

package metrics

import (
	"github.com/onitake/rtspmedia/util"
)

const (
	moduleMetrics = "metrics"

	eventMetricsError = "error"

	errorMetricsPrometheus = "prometheus"
)

// logger is the package-wide logger used by the Prometheus error adapter in
// prom.go, which has no per-instance receiver to hang a logger field off.
var logger = util.NewGlobalModuleLogger(moduleMetrics, nil)
