// Package store persists prediction records keyed by prediction id.
//
// The mock backend keeps its records in a Memory store. The cloud backend
// writes raw results to whichever Store Open selects from configuration:
//
//   - memory: in-process map, lost on restart
//   - sqlite: a local database through mattn/go-sqlite3 ("sqlite3") or
//     modernc.org/sqlite ("sqlite")
//   - postgres: a pgx connection pool
//   - azblob: one JSON blob per prediction in an Azure Storage container
//
// The predictions store name becomes the SQL table or blob container.
//
// Stores do not expire records themselves. The retention subpackage prunes
// them on a cron schedule.
package store
