package adapter

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/pkg/errors"

	"orderflow/internal/pkg/httpclient"
	"orderflow/internal/resilience"
	"orderflow/internal/service/order/port"
)

// EndpointResolver 返回库存服务的 base URL。
// 直连部署下是固定地址，接入注册中心时则每次调用做服务发现。
type EndpointResolver func() (string, error)

// StaticEndpoint 返回固定地址的 resolver。
func StaticEndpoint(baseURL string) EndpointResolver {
	return func() (string, error) { return baseURL, nil }
}

// InventoryHTTPAdapter 实现 port.InventoryChecker：
// 把整批查询序列化为一个 JSON 数组 POST 给库存服务。
type InventoryHTTPAdapter struct {
	client   *httpclient.Client
	endpoint EndpointResolver
	path     string
}

func NewInventoryHTTPAdapter(client *httpclient.Client, endpoint EndpointResolver, path string) *InventoryHTTPAdapter {
	return &InventoryHTTPAdapter{client: client, endpoint: endpoint, path: path}
}

// CheckAvailability 发起一次批量库存查询并解析带标签的结果。
//
// 失败分三类，语义各不相同：
//   - 传输失败/超时/非 2xx：以普通 error 返回，可以重试；
//   - 响应是字面量 "ERROR"：对端的业务哨兵，按成功调用返回 Rejected 批次；
//   - 响应结构损坏或缺少某个请求过的 sku：数据错误，标记为不可重试。
func (a *InventoryHTTPAdapter) CheckAvailability(ctx context.Context, requests []port.InventoryCheckRequest) (*port.InventoryCheckBatch, error) {
	payload, err := json.Marshal(requests)
	if err != nil {
		return nil, resilience.Permanent(errors.Wrap(err, "marshal inventory batch"))
	}

	baseURL, err := a.endpoint()
	if err != nil {
		return nil, errors.Wrap(err, "resolve inventory endpoint")
	}

	body, err := a.client.PostJSON(ctx, baseURL+a.path, payload)
	if err != nil {
		return nil, err
	}

	trimmed := bytes.TrimSpace(body)

	var sentinel string
	if err := json.Unmarshal(trimmed, &sentinel); err == nil {
		if sentinel == "ERROR" {
			return &port.InventoryCheckBatch{Rejected: true}, nil
		}
		return nil, resilience.Permanent(
			errors.Wrapf(port.ErrMalformedResponse, "unexpected string response %q", sentinel))
	}

	var results []port.InventoryCheckResult
	if err := json.Unmarshal(trimmed, &results); err != nil {
		return nil, resilience.Permanent(
			errors.Wrapf(port.ErrMalformedResponse, "decode response: %v", err))
	}

	// 每个请求过的 sku 都必须出现在结果里
	seen := make(map[string]bool, len(results))
	for _, r := range results {
		seen[r.SkuCode] = true
	}
	for _, req := range requests {
		if !seen[req.SkuCode] {
			return nil, resilience.Permanent(
				errors.Wrapf(port.ErrMalformedResponse, "no result for sku %s", req.SkuCode))
		}
	}

	return &port.InventoryCheckBatch{Results: results}, nil
}
