package afxdp

import "github.com/sirupsen/logrus"

// Log is the package-level logger used for lifecycle breadcrumbs: UMEM
// registration, device-queue acquisition/release, bind outcomes. It never
// logs from a hot path (reserve/submit/peek/release) and never influences
// control flow. Callers may replace it, e.g. with a logger configured to
// their own output and level.
var Log = logrus.StandardLogger()
