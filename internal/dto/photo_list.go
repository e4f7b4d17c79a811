// PhotoList is a paginated response payload for the photo endpoint.
package dto

type PhotoList struct {
	Photos []MeasurementInfo `json:"photos"`
	Total  int               `json:"total"`
	Size   int64             `json:"size"` // bytes on disk
	Limit  int               `json:"limit"`
	Offset int               `json:"offset"`
}
