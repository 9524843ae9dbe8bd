package nlp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"log"
	"math"
	"net/http"
	"time"
)

// TextVectorizer 把文本编码为定长向量
type TextVectorizer interface {
	// ID 向量器标识，参与模型存储的键
	ID() string
	// Dim 向量维度
	Dim() int
	// Vectorize 把文本编码为向量
	Vectorize(text string) ([]float64, error)
}

// CosineSimilarity 计算两个向量的余弦相似度，零向量的相似度为0
func CosineSimilarity(v1, v2 []float64) float64 {
	if len(v1) != len(v2) {
		return 0
	}
	var dot, norm1, norm2 float64
	for i := range v1 {
		dot += v1[i] * v2[i]
		norm1 += v1[i] * v1[i]
		norm2 += v2[i] * v2[i]
	}
	if norm1 == 0 || norm2 == 0 {
		return 0
	}
	return dot / (math.Sqrt(norm1) * math.Sqrt(norm2))
}

// HashingVectorizer 基于特征哈希的本地文本向量器
// 把词干化后的词项哈希到固定维度的桶上累加，结果做L2归一化。
// 不依赖外部服务，结果完全确定，适合离线运行和测试
type HashingVectorizer struct {
	VectorizerID string
	Dimension    int
}

// NewHashingVectorizer 创建特征哈希向量器
func NewHashingVectorizer(id string, dimension int) *HashingVectorizer {
	return &HashingVectorizer{VectorizerID: id, Dimension: dimension}
}

func (v *HashingVectorizer) ID() string { return v.VectorizerID }

func (v *HashingVectorizer) Dim() int { return v.Dimension }

func (v *HashingVectorizer) Vectorize(text string) ([]float64, error) {
	vec := make([]float64, v.Dimension)
	for _, term := range Terms(text) {
		h := fnv.New32a()
		h.Write([]byte(term))
		sum := h.Sum32()
		bucket := int(sum % uint32(v.Dimension))
		sign := 1.0
		if sum&0x80000000 != 0 {
			sign = -1.0
		}
		vec[bucket] += sign
	}
	var norm float64
	for _, x := range vec {
		norm += x * x
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec, nil
}

// HTTPVectorizer 调用外部嵌入API的文本向量器
type HTTPVectorizer struct {
	VectorizerID string
	APIURL       string
	APIKey       string
	Model        string
	Dimension    int
	Timeout      time.Duration
}

// NewHTTPVectorizer 创建外部嵌入API向量器
func NewHTTPVectorizer(id, apiURL, apiKey, model string, dimension int) *HTTPVectorizer {
	return &HTTPVectorizer{
		VectorizerID: id,
		APIURL:       apiURL,
		APIKey:       apiKey,
		Model:        model,
		Dimension:    dimension,
		Timeout:      10 * time.Second,
	}
}

func (v *HTTPVectorizer) ID() string { return v.VectorizerID }

func (v *HTTPVectorizer) Dim() int { return v.Dimension }

func (v *HTTPVectorizer) Vectorize(text string) ([]float64, error) {
	reqBody, err := json.Marshal(map[string]any{
		"model":           v.Model,
		"input":           []string{text},
		"encoding_format": "float",
	})
	if err != nil {
		log.Printf("[向量服务] 错误: 序列化请求失败: %v", err)
		return nil, fmt.Errorf("序列化请求失败: %w", err)
	}

	req, err := http.NewRequest("POST", v.APIURL, bytes.NewBuffer(reqBody))
	if err != nil {
		log.Printf("[向量服务] 错误: 创建HTTP请求失败: %v", err)
		return nil, fmt.Errorf("创建HTTP请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+v.APIKey)

	client := &http.Client{Timeout: v.Timeout}
	resp, err := client.Do(req)
	if err != nil {
		log.Printf("[向量服务] 错误: 嵌入API请求失败: %v", err)
		return nil, fmt.Errorf("嵌入API请求失败: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Printf("[向量服务] 错误: 读取响应失败: %v", err)
		return nil, fmt.Errorf("读取响应失败: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		log.Printf("[向量服务] 错误: API返回错误状态码: %d, 响应: %s", resp.StatusCode, string(respBody))
		return nil, fmt.Errorf("API返回错误状态码: %d, 响应: %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Data []struct {
			Embedding []float64 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		log.Printf("[向量服务] 错误: 解析响应失败: %v", err)
		return nil, fmt.Errorf("解析响应失败: %w", err)
	}
	if len(result.Data) == 0 || len(result.Data[0].Embedding) == 0 {
		log.Printf("[向量服务] 错误: 未返回有效的嵌入向量")
		return nil, fmt.Errorf("未返回有效的嵌入向量")
	}
	return result.Data[0].Embedding, nil
}
