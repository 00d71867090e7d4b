package jobs

import (
	"context"
	"log"

	"github.com/supportlens/supportlens/internal/service"
	"github.com/supportlens/supportlens/internal/telemetry"
)

// Reconciler is the subset of the knowledge base service the sweep needs.
type Reconciler interface {
	Reconcile(ctx context.Context, repair bool) (*service.ReconcileReport, error)
}

// ReconcileTask periodically compares document metadata against the vector
// index and logs any drift. It observes only; repairs are an operator action.
type ReconcileTask struct {
	reconciler Reconciler
}

func NewReconcileTask(reconciler Reconciler) *ReconcileTask {
	return &ReconcileTask{reconciler: reconciler}
}

func (t *ReconcileTask) Run(ctx context.Context) error {
	ctx, span := telemetry.StartSpan(ctx, "ReconcileTask.Run", telemetry.SpanAttributes{
		Operation: "reconcile",
	})
	defer span.End()

	report, err := t.reconciler.Reconcile(ctx, false)
	if err != nil {
		telemetry.CaptureError(ctx, err)
		return err
	}

	if len(report.Entries) == 0 {
		log.Printf("reconcile: %d documents, %d vectors, no drift", report.CheckedDocuments, report.VectorCount)
		return nil
	}

	for _, e := range report.Entries {
		if e.Orphaned {
			log.Printf("reconcile: orphaned vectors for prefix %s (%d vectors, no document)", e.Prefix, e.Actual)
			continue
		}
		log.Printf("reconcile: document %s (%s) expected %d chunks, found %d", e.DocumentID, e.Filename, e.Expected, e.Actual)
	}
	log.Printf("reconcile: %d inconsistencies found, run the repair command to fix", len(report.Entries))

	return nil
}
