package models

// Gate is the derived set of readiness booleans controlling closure
// transitions. It is computed fresh on every read and never persisted or
// cached: any of its inputs can change independently and concurrently.
type Gate struct {
	AllMilestonesComplete bool `json:"allMilestonesComplete"`
	AllPaymentsPaid       bool `json:"allPaymentsPaid"`
	CertificateIssued     bool `json:"certificateIssued"`
	RetentionReleased     bool `json:"retentionReleased"`
	ReadyToClose          bool `json:"readyToClose"`
}

// EvaluateGate computes the closure gate from the workflow's milestone and
// payment facts plus the checklist, certificate and retention state. Pure and
// side-effect free. A workflow without retention counts its retention
// condition as satisfied for readiness, but RetentionReleased itself stays
// false so callers can render the row only when applicable.
func EvaluateGate(w *Workflow, cert *Certificate, retention *RetentionPayment) Gate {
	g := Gate{
		AllMilestonesComplete: w.AllMilestonesComplete(),
		AllPaymentsPaid:       w.AllPaymentsPaid(),
	}

	if cert != nil && cert.Issued {
		g.CertificateIssued = true
	}

	if retention != nil && retention.Status == RetentionStatusReleased {
		g.RetentionReleased = true
	}

	g.ReadyToClose = g.CertificateIssued && (!w.HasRetention || g.RetentionReleased)

	return g
}
