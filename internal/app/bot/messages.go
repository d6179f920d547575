package bot

import "time"

// How long temporary replies stay in the chat.
const (
	ttlShort   = 3 * time.Second
	ttlNotice  = 5 * time.Second
	ttlConfirm = 10 * time.Second
	ttlDelete  = 15 * time.Second
	ttlList    = 20 * time.Second
	ttlCheck   = 60 * time.Second
	ttlAdded   = 180 * time.Second
)

const (
	msgInternalError = "🚫 操作失败，请稍后重试"
	msgNeedAccount   = "⚠️ 无效指令，请添加账号后使用"

	msgAddPrivateOnly = "🚨 安全警告：/add 功能只能在私聊中使用！"
	msgAddUsage       = "用法：/add 账号@密码"
	msgAddFormat      = "格式错误，应为：/add 账号@密码"
	msgAddLoggingIn   = "➡️ 正在为 %s 登录..."
	msgAddLoginFailed = "❌ 登录失败，请检查账号密码"
	msgAddDone        = "✅ 账号 %s 成功获取 Cookie"
	msgAddNotify      = "✅ 用户 %s 添加账号 %s"

	msgDelFormat          = "⚠️ 格式错误: /del 账号 | /del -all"
	msgDelUserNotFound    = "⚠️ 未找到用户"
	msgDelAccountNotFound = "⚠️ 未找到账号"
	msgDelUserDone        = "✅ 已删除用户 %s 的所有账号"
	msgDelAdminDone       = "✅ 已删除账号: %s"
	msgDelAdminNotify     = "管理员 %s 删除了账号: %s"
	msgDelAllDone         = "🗑 已删除所有账号: %s"
	msgDelAllNotify       = "用户 %s 删除了所有账号: %s"
	msgDelDone            = "🗑 已删除账号: %s"
	msgDelNotify          = "用户 %s 删除了账号: %s"

	msgModeDone  = "✅ 签到模式: %s"
	msgModeUsage = "⚠️ 参数错误，应为 /mode true 或 /mode false"

	msgCheckNoAccount = "⚠️ 你还没有绑定账号"
	msgCheckNoTargets = "⚠️ 没有可签到的账号"
	msgCheckWaiting   = "⏳ 签到中..."

	msgQueryWaiting      = "⏳ 正在查询中，请稍候..."
	msgQueryNoCookie     = "⚠️ 你所有账号都没有绑定 Cookie，无法查询"
	msgQueryAccountEmpty = "⚠️ 账号 %s 没有找到或未绑定 Cookie"
	msgQueryFailed       = "⚠️ 查询异常，请稍后重试"

	msgSummaryTooEarly = "⚠️ 请在 10:10 后使用"

	msgSetTimeUsage  = "用法: /settime 小时:分钟 (0–10点)，例如: /settime 8:30"
	msgSetTimeFormat = "⚠️ 时间格式错误，用法示例: /settime 8:30"
	msgSetTimeHour   = "⚠️ 签到时间范围只能是 0–10 点"
	msgSetTimeMinute = "⚠️ 分钟必须是 0–59"
	msgSetTimeDone   = "✅ 已设置每日签到时间为 %02d:%02d (北京时间)"

	msgTxtGroup        = "⚠️ /txt 群聊限制使用"
	msgTxtFormat       = "⚠️ 格式错误: /txt 内容 或 /txt TGID,内容"
	msgTxtUserNotFound = "⚠️ 未找到用户"
	msgTxtBody         = "📢 管理员 %s 喊话:\n%s"
	msgTxtSentOne      = "✅ 已向 %s 发送喊话"
	msgTxtSentAll      = "✅ 已发送 %d 个用户"
	btnTxtReply        = "去回复"
	btnTxtAck          = "己知晓"

	msgAckRepeat = "⚠️ 你已知晓"
	msgAckDone   = "✅ 已知晓"
	msgAckNotify = "📣 用户 %s 已知晓喊话内容"
)
