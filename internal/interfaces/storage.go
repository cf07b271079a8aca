package interfaces

// StorageManager owns the process-wide persisted state
type StorageManager interface {
	KeyValueStorage() KeyValueStorage
	DocumentIndex() DocumentIndex
	Close() error
}
