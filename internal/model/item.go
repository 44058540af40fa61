package model

// Item is the read side of an item document; the item store owns its lifecycle.
type Item struct {
	ID          string
	Name        string
	OwnerID     string
	IsAvailable bool
}

func ItemPath(id string) string {
	return CollectionItems + "/" + id
}

func UserPath(uid string) string {
	return CollectionUsers + "/" + uid
}
