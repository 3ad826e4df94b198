// Package iap reconciles in-app purchases between a payment platform and a
// merchant backend.
//
// A purchase is billed by the platform long before the merchant has seen
// it, and the app can crash, be killed or lose network anywhere in
// between. iap keeps a durable ledger of every billed transaction the
// merchant has not yet confirmed and replays those records to a recovery
// listener until the merchant calls Finish.
//
// iap is a library, not a service. Import it directly and inject its
// collaborators:
//
//   - a store.Store for durable key/value state (memory, file, sqlite,
//     postgres and mongo backends are included)
//   - a payment.Queue, payment.Catalog and payment.ReceiptSource for the
//     platform (payment/sandbox is an in-memory implementation)
//
// # Quick Start
//
//	import (
//	    "github.com/xraph/iap"
//	    "github.com/xraph/iap/ledger"
//	    "github.com/xraph/iap/payment/sandbox"
//	    "github.com/xraph/iap/store/sqlite"
//	)
//
//	s, err := sqlite.Open(ctx, "file:iap.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := s.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	platform := sandbox.New()
//	m, err := iap.New(ledger.New(s), platform, platform, platform)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := m.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer m.Stop()
//
// # Recovery
//
// Register a recovery listener as early as possible. Every unresolved
// record is replayed to it, and again whenever Buy is called while records
// are outstanding:
//
//	m.RegisterRecoveryListener(ctx, func(r iap.Result) {
//	    if err := backend.Deliver(r.Fields); err == nil {
//	        m.Finish(ctx, r.Fields)
//	    }
//	})
//
// # Purchasing
//
//	m.Buy(ctx, "coins_100", "order42", "user7", func(r iap.Result) {
//	    if !r.Success {
//	        showError(r.Message())
//	        return
//	    }
//	    if err := backend.Deliver(r.Fields); err == nil {
//	        m.Finish(ctx, r.Fields)
//	    }
//	})
//
// Only one purchase is in flight at a time. The callback receives the
// record fields (user_id, order_id, transaction_id, product_id, receipt);
// the receipt is base64 and then percent-encoded, ready for a form post.
//
// # Plugins
//
// Lifecycle hooks are available through the plugin package. The audit_hook
// and observability packages are ready-made plugins.
package iap
