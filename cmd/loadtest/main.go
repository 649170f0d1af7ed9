package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// Result 记录单次请求的 HTTP 结果，便于聚合统计。
type Result struct {
	Status int
	Body   string
	Err    error
}

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

func main() {
	baseURL := flag.String("base", "http://localhost:8080", "server base url")
	email := flag.String("email", "loadtest@store.local", "seller account email")
	password := flag.String("password", "loadtest-pass", "seller account password")
	stock := flag.Int("stock", 3, "initial stock of the test product")

	// 超卖测试参数：50 个收银会话并发抢 3 件
	nSessions := flag.Int("sessions", 50, "concurrent checkout sessions")
	concurrency := flag.Int("c", 50, "max concurrency")
	flag.Parse()

	client := &http.Client{Timeout: 10 * time.Second}

	owner, err := ensureSeller(client, *baseURL, *email, *password)
	if err != nil {
		panic(fmt.Sprintf("seller session failed: %v", err))
	}

	name := fmt.Sprintf("loadtest-%d", time.Now().UnixNano())
	productID, err := createProduct(client, *baseURL, owner, name, *stock)
	if err != nil {
		panic(fmt.Sprintf("create product failed: %v", err))
	}
	fmt.Printf("product %s id=%d stock=%d\n", name, productID, *stock)

	// 每个会话先加购 1 件（快照里都能看到库存），再并发结账
	tokens := make([]string, 0, *nSessions)
	for i := 0; i < *nSessions; i++ {
		tok, err := signIn(client, *baseURL, *email, *password)
		if err != nil {
			panic(fmt.Sprintf("sign in %d failed: %v", i, err))
		}
		res := call(client, http.MethodPost, *baseURL+"/api/cart/lines", tok, map[string]any{
			"product_id": productID, "quantity": 1,
		})
		if res.Err != nil || res.Status != http.StatusOK {
			panic(fmt.Sprintf("add line %d failed: status=%d err=%v body=%s", i, res.Status, res.Err, res.Body))
		}
		tokens = append(tokens, tok)
	}

	// 1) 不超卖测试：不同会话并发结账
	fmt.Printf("start oversell test: sessions=%d concurrency=%d\n", *nSessions, *concurrency)
	results := runParallel(len(tokens), *concurrency, func(i int) Result {
		return call(client, http.MethodPost, *baseURL+"/api/cart/checkout", tokens[i], nil)
	})
	printSummary("oversell", results)

	left, err := productStock(client, *baseURL, owner, name)
	if err != nil {
		fmt.Println("stock check err:", err)
	} else {
		fmt.Printf("final stock: %d (expect %d successful checkouts)\n", left, *stock)
	}

	// 2) 重复提交测试：同一会话并发结账，期望 409（锁或库存）/ 400（空购物车）/ 429
	fmt.Println("\nstart double submit test: one session, 50 requests, concurrency 50")
	res := call(client, http.MethodPost, *baseURL+"/api/cart/lines", owner, map[string]any{
		"product_id": productID, "quantity": 1,
	})
	if res.Status != http.StatusOK {
		fmt.Printf("  add line status=%d body=%s (stock exhausted is expected)\n", res.Status, res.Body)
	}
	results2 := runParallel(50, 50, func(int) Result {
		return call(client, http.MethodPost, *baseURL+"/api/cart/checkout", owner, nil)
	})
	printSummary("double_submit", results2)
}

func runParallel(total, concurrency int, fn func(i int) Result) []Result {
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	results := make([]Result, total)

	for i := 0; i < total; i++ {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()
			results[idx] = fn(idx)
		}(i)
	}

	wg.Wait()
	return results
}

func call(client *http.Client, method, url, token string, body any) Result {
	var r io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		r = bytes.NewReader(b)
	}
	req, _ := http.NewRequest(method, url, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return Result{Err: err}
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return Result{Status: resp.StatusCode, Body: string(b)}
}

func decode(res Result, out any) error {
	if res.Err != nil {
		return res.Err
	}
	if res.Status >= 300 {
		return fmt.Errorf("status=%d body=%s", res.Status, res.Body)
	}
	var env envelope
	if err := json.Unmarshal([]byte(res.Body), &env); err != nil {
		return err
	}
	return json.Unmarshal(env.Data, out)
}

// ensureSeller 注册卖家；已注册时直接登录。
func ensureSeller(client *http.Client, baseURL, email, password string) (string, error) {
	res := call(client, http.MethodPost, baseURL+"/api/auth/signup", "", map[string]string{
		"email": email, "password": password, "full_name": "Load Test",
	})
	if res.Status == http.StatusConflict {
		return signIn(client, baseURL, email, password)
	}
	var sess struct {
		Token string `json:"token"`
	}
	if err := decode(res, &sess); err != nil {
		return "", err
	}
	return sess.Token, nil
}

// signIn 登录接口按 IP 限流（AUTH_RATE_LIMIT / AUTH_RATE_WINDOW_SEC），遇到 429 等待后重试。
func signIn(client *http.Client, baseURL, email, password string) (string, error) {
	var res Result
	for attempt := 0; attempt < 120; attempt++ {
		res = call(client, http.MethodPost, baseURL+"/api/auth/signin", "", map[string]string{
			"email": email, "password": password,
		})
		if res.Status != http.StatusTooManyRequests {
			break
		}
		time.Sleep(time.Second)
	}
	var sess struct {
		Token string `json:"token"`
	}
	if err := decode(res, &sess); err != nil {
		return "", err
	}
	return sess.Token, nil
}

func createProduct(client *http.Client, baseURL, token, name string, stock int) (uint, error) {
	res := call(client, http.MethodPost, baseURL+"/api/products", token, map[string]string{
		"name":           name,
		"category":       "other",
		"quantity":       fmt.Sprint(stock),
		"purchase_price": "1.00",
		"selling_price":  "1.50",
		"min_quantity":   "1",
	})
	var p struct {
		ID uint `json:"id"`
	}
	if err := decode(res, &p); err != nil {
		return 0, err
	}
	return p.ID, nil
}

// productStock 压测后查询数据库中的剩余库存，用于校验是否出现超卖。
func productStock(client *http.Client, baseURL, token, name string) (int, error) {
	res := call(client, http.MethodGet, baseURL+"/api/products?q="+name, token, nil)
	var list []struct {
		Name     string `json:"name"`
		Quantity int    `json:"quantity"`
	}
	if err := decode(res, &list); err != nil {
		return 0, err
	}
	for _, p := range list {
		if p.Name == name {
			return p.Quantity, nil
		}
	}
	return 0, fmt.Errorf("product %s not found", name)
}

// printSummary 聚合输出不同状态码分布。
func printSummary(name string, results []Result) {
	count := map[int]int{}
	errCount := 0
	for _, r := range results {
		if r.Err != nil {
			errCount++
			continue
		}
		count[r.Status]++
	}
	fmt.Printf("[%s] http status summary:\n", name)
	for _, code := range []int{200, 400, 401, 404, 409, 429, 500} {
		if count[code] > 0 {
			fmt.Printf("  %d -> %d\n", code, count[code])
		}
	}
	if errCount > 0 {
		fmt.Printf("  errors -> %d\n", errCount)
	}
}
