package api

import (
	"context"
	"fmt"
	"net/http"

	"docchat-cli/internal/model"
)

// ListThreads 获取会话列表，按创建时间倒序
func (c *Client) ListThreads(ctx context.Context) ([]model.Thread, error) {
	raw, err := c.Call(ctx, "/threads/", RequestOptions{})
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return []model.Thread{}, nil
	}
	list, err := decode[[]model.Thread](raw, "会话列表")
	if err != nil {
		return nil, err
	}
	if *list == nil {
		return []model.Thread{}, nil
	}
	return *list, nil
}

// CreateThread 新建会话
func (c *Client) CreateThread(ctx context.Context) (*model.Thread, error) {
	raw, err := c.Call(ctx, "/threads/", RequestOptions{Method: http.MethodPost})
	if err != nil {
		return nil, err
	}
	return decode[model.Thread](raw, "新建会话")
}

// GetThread 获取会话详情（消息与文档）
func (c *Client) GetThread(ctx context.Context, id int64) (*model.ThreadDetail, error) {
	raw, err := c.Call(ctx, threadPath(id, ""), RequestOptions{})
	if err != nil {
		return nil, err
	}
	return decode[model.ThreadDetail](raw, "会话详情")
}

// DeleteThread 删除会话及其消息、文档
func (c *Client) DeleteThread(ctx context.Context, id int64) error {
	_, err := c.Call(ctx, threadPath(id, ""), RequestOptions{Method: http.MethodDelete})
	return err
}

// SendMessage 发送问题，返回用户消息与助手回答
func (c *Client) SendMessage(ctx context.Context, id int64, text string) (*model.MessagePair, error) {
	body := map[string]string{"message": text}
	raw, err := c.Call(ctx, threadPath(id, "send_message/"), RequestOptions{Method: http.MethodPost, Body: body})
	if err != nil {
		return nil, err
	}
	return decode[model.MessagePair](raw, "发送消息")
}

// UploadDocument 上传文档到会话
func (c *Client) UploadDocument(ctx context.Context, id int64, form *FormData) (*model.UploadResult, error) {
	if form == nil {
		return nil, NewValidationError("file", "请选择要上传的文件")
	}
	raw, err := c.Call(ctx, threadPath(id, "upload_document/"), RequestOptions{Method: http.MethodPost, Body: form})
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return &model.UploadResult{}, nil
	}
	return decode[model.UploadResult](raw, "上传文档")
}

func threadPath(id int64, action string) string {
	return fmt.Sprintf("/threads/%d/%s", id, action)
}
