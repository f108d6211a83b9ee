package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	purchasesInitiated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "filemarket_purchases_initiated_total",
		Help: "Purchases created, by payment method.",
	}, []string{"payment_method"})

	purchaseDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "filemarket_purchase_decisions_total",
		Help: "Admin decisions applied to pending purchases.",
	}, []string{"decision"})

	downloadsRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "filemarket_downloads_recorded_total",
		Help: "Authorized downloads, split by free and purchased files.",
	}, []string{"kind"})

	entitlementDenials = promauto.NewCounter(prometheus.CounterOpts{
		Name: "filemarket_entitlement_denials_total",
		Help: "Download attempts rejected for lack of entitlement.",
	})
)
