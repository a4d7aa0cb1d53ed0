package realtime

// 投递语义：at-most-once、尽力而为。目标不在线/连接已关=静默无操作，
// 服务端不排队不重试，收不到的一端靠下次拉取持久层追平。

// Deliver 单目标投递；返回是否真正入队（调用方一般不关心）
func (r *Registry) Deliver(userID string, data []byte) bool {
	sess, ok := r.Lookup(userID)
	if !ok {
		return false
	}
	return sess.Send(data)
}

// DeliverMany 多目标投递（群消息、群 typing）；except 为发起者。
// 每个目标独立入队，慢消费者只影响自己，不同收件人之间无顺序保证。
func (r *Registry) DeliverMany(userIDs []string, except string, data []byte) int {
	n := 0
	for _, uid := range userIDs {
		if uid == except {
			continue
		}
		if r.Deliver(uid, data) {
			n++
		}
	}
	return n
}

// Broadcast 对全部在线会话投递（presence 广播）；except 为发起者
func (r *Registry) Broadcast(except string, data []byte) int {
	r.mu.RLock()
	targets := make([]*Session, 0, len(r.sessions))
	for uid, sess := range r.sessions {
		if uid == except {
			continue
		}
		targets = append(targets, sess)
	}
	r.mu.RUnlock()

	n := 0
	for _, sess := range targets {
		if sess.Send(data) {
			n++
		}
	}
	return n
}
