package repository

import "gorm.io/gorm"

// pick returns tx when the caller runs inside a transaction, db otherwise.
func pick(db, tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return db
}
