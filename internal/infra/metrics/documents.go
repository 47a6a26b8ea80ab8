package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	documentsServed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "documents_served_total",
		Help: "Documents served, by file extension.",
	}, []string{"extension"})
	documentSecurityBlocks = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "document_security_blocks_total",
		Help: "Document requests rejected for path escape or symlink tricks.",
	})
)

func init() {
	register(documentsServed, documentSecurityBlocks)
}

func IncDocumentServed(ext string) { documentsServed.WithLabelValues(ext).Inc() }
func IncDocumentSecurityBlock()    { documentSecurityBlocks.Inc() }
