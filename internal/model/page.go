package model

type JobPage struct {
	Page int         `json:"page"`
	Next bool        `json:"next"`
	Data []ExportJob `json:"data"`
}
