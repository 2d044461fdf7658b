package autosave

import "github.com/weiwangfds/novelsync/internal/database"

// Patch 作品的部分更新，nil 字段表示不修改
type Patch struct {
	Title    *string   `json:"title,omitempty"`
	Content  *string   `json:"content,omitempty"`
	FolderID *string   `json:"folder_id,omitempty"`
	Tags     *[]string `json:"tags,omitempty"`
}

// Merge 合并另一个补丁，同一字段以后来者为准
func (p *Patch) Merge(other Patch) {
	if other.Title != nil {
		p.Title = other.Title
	}
	if other.Content != nil {
		p.Content = other.Content
	}
	if other.FolderID != nil {
		p.FolderID = other.FolderID
	}
	if other.Tags != nil {
		tags := append([]string{}, (*other.Tags)...)
		p.Tags = &tags
	}
}

// Empty 没有任何字段
func (p Patch) Empty() bool {
	return p.Title == nil && p.Content == nil && p.FolderID == nil && p.Tags == nil
}

// Apply 把补丁写入作品
func (p Patch) Apply(n *database.Novel) {
	if p.Title != nil {
		n.Title = *p.Title
	}
	if p.Content != nil {
		n.Content = *p.Content
	}
	if p.FolderID != nil {
		n.FolderID = *p.FolderID
	}
	if p.Tags != nil {
		n.Tags = append([]string{}, (*p.Tags)...)
	}
}
