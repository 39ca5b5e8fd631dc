// Package plugins links every built-in plugin into the host binary.
// Importing it registers their factories; the manager still decides which
// ones load based on the manifests and configuration it finds.
package plugins

import (
	_ "github.com/finbridge/finbridge/plugins/bigcapital"
	_ "github.com/finbridge/finbridge/plugins/invoiceninja"
	_ "github.com/finbridge/finbridge/plugins/invoiceplane"
	_ "github.com/finbridge/finbridge/plugins/paperless"
)
