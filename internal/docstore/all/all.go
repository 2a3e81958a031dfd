// Package all links every docstore backend into a binary. Import it for
// side effects; config decides which backend is actually used.
package all

import (
	_ "ingest/internal/docstore/mssql"
	_ "ingest/internal/docstore/postgres"
	_ "ingest/internal/docstore/sqlite"
)
