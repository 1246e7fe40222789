// internal/model/poster.go
package model

type Poster struct {
	ID    string `db:"id" json:"_id"`
	Title string `db:"title" json:"title"`
}
